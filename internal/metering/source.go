// Package metering turns provider usage payloads into usage records. The
// normalization and source-resolution functions are pure and are shared
// between live metering and the legacy flat-file import, so both paths label
// identical inputs identically.
package metering

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orgdesk/modelgate/internal/models"
	"github.com/orgdesk/modelgate/internal/provider"
)

// Fixed labels for sources that carry no name of their own.
const (
	labelAssistant       = "assistant"
	labelGlobalAssistant = "top-level AI assistant"
	labelSomeDepartment  = "a department"
	labelSomeProject     = "a project"
)

// sourceDescriptor is the structured form of a caller-supplied source tag.
type sourceDescriptor struct {
	Type         string          `json:"type"`
	EmployeeID   json.RawMessage `json:"employeeId"`
	EmployeeName string          `json:"employeeName"`
	DeptName     string          `json:"deptName"`
	ProjectName  string          `json:"projectName"`
}

// ResolveSource maps a raw source descriptor to its (type, label) pair.
// Accepted shapes: a JSON object with a type discriminator, a bare JSON
// string, or nothing. Unresolvable input becomes the unknown type with an
// empty label.
func ResolveSource(raw json.RawMessage) (sourceType, sourceLabel string) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return models.SourceTypeUnknown, ""
	}

	var asString string
	if errString := json.Unmarshal(raw, &asString); errString == nil {
		return models.SourceTypeRaw, asString
	}

	var descriptor sourceDescriptor
	if errObject := json.Unmarshal(raw, &descriptor); errObject != nil {
		return models.SourceTypeUnknown, ""
	}

	switch descriptor.Type {
	case models.SourceTypeEmployee:
		if name := strings.TrimSpace(descriptor.EmployeeName); name != "" {
			return models.SourceTypeEmployee, name
		}
		return models.SourceTypeEmployee, "employee#" + employeeIDString(descriptor.EmployeeID)
	case models.SourceTypeDepartment:
		if name := strings.TrimSpace(descriptor.DeptName); name != "" {
			return models.SourceTypeDepartment, name
		}
		return models.SourceTypeDepartment, labelSomeDepartment
	case models.SourceTypeProject:
		if name := strings.TrimSpace(descriptor.ProjectName); name != "" {
			return models.SourceTypeProject, name
		}
		return models.SourceTypeProject, labelSomeProject
	case models.SourceTypeAssistant:
		return models.SourceTypeAssistant, labelAssistant
	case models.SourceTypeGlobalAssistant:
		return models.SourceTypeGlobalAssistant, labelGlobalAssistant
	default:
		return models.SourceTypeUnknown, ""
	}
}

// employeeIDString renders an employee ID that may arrive as a number or a
// string; absent IDs render as "-".
func employeeIDString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "-"
	}
	var asString string
	if errString := json.Unmarshal(raw, &asString); errString == nil {
		if asString = strings.TrimSpace(asString); asString != "" {
			return asString
		}
		return "-"
	}
	var asNumber int64
	if errNumber := json.Unmarshal(raw, &asNumber); errNumber == nil {
		return fmt.Sprintf("%d", asNumber)
	}
	return "-"
}

// NormalizeTokens derives (prompt, completion, total) counts from a provider
// usage payload. Providers disagree on field names; absent totals are
// reconstructed as prompt+completion, and a reported total can never end up
// below either component.
func NormalizeTokens(usage provider.RawUsage) (prompt, completion, total int64) {
	prompt = firstNonNil(usage.PromptTokens, usage.InputTokens)
	completion = firstNonNil(usage.CompletionTokens, usage.OutputTokens)

	if usage.TotalTokens != nil && *usage.TotalTokens >= prompt && *usage.TotalTokens >= completion {
		return prompt, completion, *usage.TotalTokens
	}
	return prompt, completion, prompt + completion
}

func firstNonNil(values ...*int64) int64 {
	for _, value := range values {
		if value != nil {
			if *value < 0 {
				return 0
			}
			return *value
		}
	}
	return 0
}
