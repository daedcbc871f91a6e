// Package artifacts stores rendered QR images outside the relational store.
package artifacts

import (
	"context"
	"encoding/json"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/pkg/errors"
)

type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

const ContentTypePNG = "image/png"

var ErrNotFound = errors.New("artifact not found")

// Store persists artifact bytes by key. Put overwrites.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Locate is the reference saved next to the owning row.
	Locate(key string) string
}

// Encoder renders a payload string into image bytes.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

func RecordKey(shortID string) string {
	return "qrcode_" + shortID + ".png"
}

func LoadTicketKey(shortID string) string {
	return "loadticket_" + shortID + ".png"
}

// Render marshals payload to JSON and encodes it. Both failures are encoding errors.
func Render(enc Encoder, payload any) (string, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", nil, apperr.Encoding(err, "marshal qr payload")
	}
	img, err := enc.Encode(string(b))
	if err != nil {
		return "", nil, apperr.Encoding(err, "encode qr")
	}
	return string(b), img, nil
}
