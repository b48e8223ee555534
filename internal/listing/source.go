package listing

import (
	"context"
	"io"
	"os"
	"strconv"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var (
	ErrSource    = zerr.New("cannot load listings")
	ErrMalformed = zerr.New("malformed listings")
	ErrDuplicate = zerr.New("duplicate listing id")
)

// Source loads the full listing collection.
type Source interface {
	Load(ctx context.Context) ([]Listing, error)
}

type document struct {
	Listings []Listing `yaml:"listings"`
}

// Decode reads a YAML listings document and checks it. A listing without a
// status is available.
func Decode(r io.Reader) ([]Listing, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, zerr.Wrap(err, ErrMalformed.Error())
	}
	if err := check(doc.Listings); err != nil {
		return nil, err
	}
	return doc.Listings, nil
}

func check(listings []Listing) error {
	seen := make(map[string]struct{}, len(listings))
	for i := range listings {
		l := &listings[i]
		if l.ID == "" {
			return zerr.With(ErrMalformed, "index", strconv.Itoa(i))
		}
		if _, dup := seen[l.ID]; dup {
			return zerr.With(ErrDuplicate, "id", l.ID)
		}
		seen[l.ID] = struct{}{}
		if l.Status == "" {
			l.Status = StatusAvailable
		}
	}
	return nil
}

// FileSource reads listings from a YAML file of the form
//
//	listings:
//	  - id: "1"
//	    make: Honda
//	    model: Civic
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrSource.Error()), "path", s.Path)
	}
	defer f.Close()

	listings, err := Decode(f)
	if err != nil {
		return nil, zerr.With(err, "path", s.Path)
	}
	return listings, nil
}

// Static serves a fixed collection.
type Static []Listing

func (s Static) Load(ctx context.Context) ([]Listing, error) {
	out := make([]Listing, len(s))
	copy(out, s)
	if err := check(out); err != nil {
		return nil, err
	}
	return out, nil
}
