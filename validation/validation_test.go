package validation

import (
	stderrors "errors"
	"net/http"
	"testing"
)

type testConfig struct {
	Issuer   string `mapstructure:"issuer" validate:"required,url"`
	ClientID string `mapstructure:"client_id" validate:"required"`
	Mode     string `json:"mode" validate:"omitempty,oneof=strict lax"`
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(testConfig{Issuer: "https://id.example.com", ClientID: "app"})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestStruct_RequiredFieldsInOrder(t *testing.T) {
	err := Struct(testConfig{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := err.Error(); got != "issuer is required; client_id is required" {
		t.Errorf("got %q", got)
	}
}

func TestStruct_URLAndOneOf(t *testing.T) {
	err := Struct(testConfig{Issuer: "not a url", ClientID: "app", Mode: "loose"})
	var verr *Error
	if !stderrors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", verr.Fields)
	}
	if verr.Fields[0].Field != "issuer" || verr.Fields[0].Message != "must be a valid URL" {
		t.Errorf("unexpected first field error %+v", verr.Fields[0])
	}
	if verr.Fields[1].Field != "mode" || verr.Fields[1].Message != "must be one of: strict lax" {
		t.Errorf("unexpected second field error %+v", verr.Fields[1])
	}
}

func TestStruct_NestedPath(t *testing.T) {
	type fn struct {
		Key string `json:"key" validate:"required"`
	}
	type manifest struct {
		Functions []fn `json:"functions" validate:"dive"`
	}
	err := Struct(manifest{Functions: []fn{{Key: "a"}, {}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "functions[1].key is required" {
		t.Errorf("got %q", got)
	}
}

func TestError_AppError(t *testing.T) {
	err := Struct(testConfig{Issuer: "https://id.example.com"})
	var verr *Error
	if !stderrors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	appErr := verr.AppError()
	if appErr.Status() != http.StatusBadRequest {
		t.Errorf("status = %d", appErr.Status())
	}
	if _, ok := appErr.Details["fields"]; !ok {
		t.Error("expected fields detail")
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("SystemName"); got != "system_name" {
		t.Errorf("got %q", got)
	}
}
