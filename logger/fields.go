package logger

import "time"

// Keys shared by every package so entries can be queried uniformly.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldDuration  = "duration_ms"

	FieldIssuer   = "issuer"
	FieldClientID = "client_id"
	FieldKeyID    = "kid"
	FieldSystemID = "system_id"
)

// Fields pairs up alternating keys and values. Non-string keys and a
// trailing key without a value are ignored.
//
//	log.Info("jwks refreshed", logger.Fields("keys", 2, logger.FieldIssuer, iss))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 1; i < len(kvs); i += 2 {
		if k, ok := kvs[i-1].(string); ok {
			m[k] = kvs[i]
		}
	}
	return m
}

func ErrorFields(op string, err error) map[string]interface{} {
	return Fields(FieldOperation, op, FieldError, err.Error())
}

func DurationFields(op string, d time.Duration) map[string]interface{} {
	return Fields(FieldOperation, op, FieldDuration, d.Milliseconds())
}
