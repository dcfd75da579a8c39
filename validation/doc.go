// Package validation checks configuration and request structs against
// go-playground/validator `validate` tags.
//
//	type SystemInfo struct {
//	    ID   string `json:"id" validate:"required"`
//	    Name string `json:"name" validate:"required"`
//	}
//	if err := validation.Struct(info); err != nil {
//	    // err is *validation.Error: "id is required"
//	}
//
// Field names in messages follow the mapstructure tag, then the json tag,
// then the snake_cased Go field name.
package validation
