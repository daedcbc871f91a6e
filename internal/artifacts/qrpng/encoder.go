package qrpng

import (
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// Encoder renders payloads as PNG QR codes at medium error correction.
type Encoder struct {
	size  int
	level qrcode.RecoveryLevel
}

func New(size int) *Encoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &Encoder{size: size, level: qrcode.Medium}
}

func (e *Encoder) Encode(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, e.level, e.size)
	if err != nil {
		return nil, errors.Wrap(err, "qr encode")
	}
	return png, nil
}
