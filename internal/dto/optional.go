package dto

import "encoding/json"

// Optional tells an absent JSON field apart from an explicit null.
// Set is true whenever the key was present in the body.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON records that the field was present
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Null reports whether the field was sent as an explicit null.
func (o Optional[T]) Null() bool {
	return o.Set && o.Value == nil
}
