package payment

import (
	"github.com/cockroachdb/errors"
	"github.com/skip2/go-qrcode"
)

const qrSize = 360

// QRPNG renders payload as a PNG with low error correction.
func QRPNG(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Low, qrSize)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	return png, nil
}

// QRText renders payload with block characters for terminals.
func QRText(payload string) (string, error) {
	q, err := qrcode.New(payload, qrcode.Low)
	if err != nil {
		return "", errors.Wrap(err, "encode qr")
	}
	return q.ToSmallString(false), nil
}
