package greenapi

import (
	"encoding/json"
	"strconv"
)

// flexString decodes from a JSON string, number, or null. Clients send
// form values both quoted and bare; validation happens downstream.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexString(strconv.FormatFloat(v, 'f', -1, 64))
	return nil
}
