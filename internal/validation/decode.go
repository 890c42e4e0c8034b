package validation

import (
	"net/url"

	"github.com/gorilla/schema"
)

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.SetAliasTag("json")
	d.IgnoreUnknownKeys(true)
	return d
}

// DecodeForm fills dst from posted form values, using the json names of its fields.
func DecodeForm(dst any, values url.Values) error {
	if err := decoder.Decode(dst, values); err != nil {
		return FieldErrors(conversionErrors(err))
	}
	return nil
}

func conversionErrors(err error) map[string]string {
	out := map[string]string{}

	multi, ok := err.(schema.MultiError)
	if !ok {
		out["form"] = "입력값을 확인해주세요."
		return out
	}

	for key := range multi {
		out[key] = "올바른 형식이 아닙니다."
	}
	return out
}
