package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin/binding"
)

// exactNumberJSON is gin's JSON binding with json.Number decoding, so payload
// integers past 2^53 are stored and fingerprinted with every digit.
type exactNumberJSON struct{}

func (exactNumberJSON) Name() string { return "json" }

func (b exactNumberJSON) Bind(req *http.Request, obj any) error {
	if req == nil || req.Body == nil {
		return errors.New("invalid request")
	}
	return b.decode(req.Body, obj)
}

func (b exactNumberJSON) BindBody(body []byte, obj any) error {
	return b.decode(bytes.NewReader(body), obj)
}

func (exactNumberJSON) decode(r io.Reader, obj any) error {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(obj); err != nil {
		return err
	}
	if binding.Validator == nil {
		return nil
	}
	return binding.Validator.ValidateStruct(obj)
}

var _ binding.BindingBody = exactNumberJSON{}
