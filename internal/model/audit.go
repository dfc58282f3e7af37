package model

import (
	"encoding/json"
	"time"
)

// AuditEntry records one call, admitted or rejected. ResultSize is set only
// for calls that executed; rejected calls carry Reason instead.
type AuditEntry struct {
	ID                  string          `db:"id"                   json:"id"`
	Timestamp           time.Time       `db:"ts"                   json:"timestamp"`
	CustomerID          int64           `db:"customer_id"          json:"customer_id"`
	ToolName            string          `db:"tool_name"            json:"tool_name"`
	MaskedArguments     json.RawMessage `db:"masked_arguments"     json:"masked_arguments"`
	ArgumentFingerprint string          `db:"argument_fingerprint" json:"argument_fingerprint"`
	ResultSize          *int            `db:"result_size"          json:"result_size,omitempty"`
	LatencyMs           int64           `db:"latency_ms"           json:"latency_ms"`
	Success             bool            `db:"success"              json:"success"`
	Reason              string          `db:"reason"               json:"reason,omitempty"`
	Stage               string          `db:"stage"                json:"stage"`
	ClientIP            string          `db:"client_ip"            json:"client_ip"`
	UserAgent           string          `db:"user_agent"           json:"user_agent"`
}
