package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"go.trai.ch/zerr"
)

// envelope is the stored form of an entry. Packed holds base64(gzip(JSON))
// when the entry was written with compression, Value holds plain JSON
// otherwise. CreatedAt is Unix nanoseconds and TTL is nanoseconds.
type envelope struct {
	Key        string          `json:"k"`
	CreatedAt  int64           `json:"c"`
	TTL        int64           `json:"t"`
	Compressed bool            `json:"z,omitempty"`
	Value      json.RawMessage `json:"v,omitempty"`
	Packed     string          `json:"p,omitempty"`
}

func (e envelope) createdAt() time.Time {
	return time.Unix(0, e.CreatedAt)
}

func (e envelope) ttl() time.Duration {
	return time.Duration(e.TTL)
}

// expired reports whether now is past the entry's lifetime. An entry is still
// visible exactly at CreatedAt+TTL.
func (e envelope) expired(now time.Time) bool {
	return now.Sub(e.createdAt()) > e.ttl()
}

func encode(key string, value any, createdAt time.Time, ttl time.Duration, compress bool) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, zerr.Wrap(err, ErrEncode.Error())
	}

	env := envelope{
		Key:        key,
		CreatedAt:  createdAt.UnixNano(),
		TTL:        int64(ttl),
		Compressed: compress,
	}
	if compress {
		packed, err := pack(raw)
		if err != nil {
			return nil, zerr.Wrap(err, ErrEncode.Error())
		}
		env.Packed = packed
	} else {
		env.Value = raw
	}

	b, err := json.Marshal(env)
	if err != nil {
		return nil, zerr.Wrap(err, ErrEncode.Error())
	}
	return b, nil
}

func decodeEnvelope(b []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return envelope{}, zerr.Wrap(err, ErrDecode.Error())
	}
	return env, nil
}

func decodeValue(env envelope, dst any) error {
	raw := []byte(env.Value)
	if env.Compressed {
		unpacked, err := unpack(env.Packed)
		if err != nil {
			return zerr.Wrap(err, ErrDecode.Error())
		}
		raw = unpacked
	}
	if len(raw) == 0 {
		return ErrDecode
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return zerr.Wrap(err, ErrDecode.Error())
	}
	return nil
}

func pack(data []byte) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	if _, err := gz.Write(data); err != nil {
		return "", err
	}

	if err := gz.Close(); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func unpack(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}
