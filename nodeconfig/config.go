// Package nodeconfig holds the typed configuration of every node variant and the
// editors that draft and commit it.
//
// Config is a closed tagged union: one struct per registry.Variant. Dispatch is
// an exhaustive switch over the variant, and RawConfig is the free-form fallback
// for node types the registry does not know.
package nodeconfig

import (
	"errors"
	"fmt"
	"slices"

	"github.com/meikuraledutech/apiflow/registry"
)

// ErrInvalidConfig is returned when a draft fails validation on save.
var ErrInvalidConfig = errors.New("nodeconfig: invalid config")

// Config is implemented by every configuration variant.
type Config interface {
	Variant() registry.Variant
	normalize() error
}

// Scale of an input node.
type Scale string

const (
	ScaleUserSpecific Scale = "User Specific"
	ScaleGlobal       Scale = "Global"
)

// MessageType of notification style nodes.
type MessageType string

const (
	MessageInfo    MessageType = "info"
	MessageWarning MessageType = "warning"
	MessageError   MessageType = "error"
	MessageSuccess MessageType = "success"
)

var messageTypes = []MessageType{MessageInfo, MessageWarning, MessageError, MessageSuccess}

// Severity of error and warning message nodes.
type Severity string

const (
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
	SeverityFatal    Severity = "fatal"

	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityNotice  Severity = "notice"
)

// URLNodeName is the fixed name a saved URL config carries.
const URLNodeName = "URL"

// DefaultDismissTimeout is the warning auto-dismiss delay in milliseconds.
const DefaultDismissTimeout = 5000

func oneOf[T ~string](field string, v T, allowed ...T) error {
	if slices.Contains(allowed, v) {
		return nil
	}
	return fmt.Errorf("%w: %s %q not in %v", ErrInvalidConfig, field, v, allowed)
}

// StartConfig configures the start node.
type StartConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (*StartConfig) Variant() registry.Variant { return registry.VariantStart }
func (*StartConfig) normalize() error          { return nil }

// InputConfig configures an input node.
type InputConfig struct {
	Name  string `json:"name"`
	Scale Scale  `json:"scale"`
}

func (*InputConfig) Variant() registry.Variant { return registry.VariantInput }

func (c *InputConfig) normalize() error {
	if c.Scale == "" {
		c.Scale = ScaleUserSpecific
	}
	return oneOf("scale", c.Scale, ScaleUserSpecific, ScaleGlobal)
}

// OutputConfig is free text. It is stored as a JSON string.
type OutputConfig struct {
	Text string
}

func (*OutputConfig) Variant() registry.Variant { return registry.VariantOutput }
func (*OutputConfig) normalize() error          { return nil }

// URLConfig configures a URL source node. Name is always "URL" once saved.
type URLConfig struct {
	URL    string `json:"url"`
	Remark string `json:"remark"`
	Name   string `json:"name"`
}

func (*URLConfig) Variant() registry.Variant { return registry.VariantURL }

func (c *URLConfig) normalize() error {
	c.Name = URLNodeName
	return nil
}

// StaticValueConfig names the information form a static value comes from.
type StaticValueConfig struct {
	FormName string `json:"formName"`
}

func (*StaticValueConfig) Variant() registry.Variant { return registry.VariantStaticValue }
func (*StaticValueConfig) normalize() error          { return nil }

// SubFormConfig is the question-id node's sub-form reference.
type SubFormConfig struct {
	SubFormID    string `json:"subFormId"`
	SubFormName  string `json:"subFormName"`
	ParentFormID string `json:"parentFormId"`
	Description  string `json:"description"`
}

func (*SubFormConfig) Variant() registry.Variant { return registry.VariantSubForm }
func (*SubFormConfig) normalize() error          { return nil }

// ComparisonConfig configures the equalTo / lessThan / ... operators.
type ComparisonConfig struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (*ComparisonConfig) Variant() registry.Variant { return registry.VariantComparison }
func (*ComparisonConfig) normalize() error          { return nil }

// LogicalConfig configures the and / or operators.
type LogicalConfig struct {
	Description string `json:"description"`
}

func (*LogicalConfig) Variant() registry.Variant { return registry.VariantLogical }
func (*LogicalConfig) normalize() error          { return nil }

// NotificationConfig configures a notification node.
type NotificationConfig struct {
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Type    MessageType `json:"type"`
}

func (*NotificationConfig) Variant() registry.Variant { return registry.VariantNotification }

func (c *NotificationConfig) normalize() error {
	if c.Type == "" {
		c.Type = MessageInfo
	}
	return oneOf("type", c.Type, messageTypes...)
}

// DelayNotificationConfig configures a delayed notification node.
type DelayNotificationConfig struct {
	Delay   string      `json:"delay"`
	Message string      `json:"message"`
	Type    MessageType `json:"type"`
}

func (*DelayNotificationConfig) Variant() registry.Variant { return registry.VariantDelayNotification }

func (c *DelayNotificationConfig) normalize() error {
	if c.Type == "" {
		c.Type = MessageInfo
	}
	return oneOf("type", c.Type, messageTypes...)
}

// BulkUploadConfig configures a bulk upload node.
type BulkUploadConfig struct {
	FileType    string `json:"fileType"`
	Template    string `json:"template"`
	Description string `json:"description"`
}

func (*BulkUploadConfig) Variant() registry.Variant { return registry.VariantBulkUpload }
func (*BulkUploadConfig) normalize() error          { return nil }

// SAPConfig configures an SAP function call node.
type SAPConfig struct {
	SAPSystem    string `json:"sapSystem"`
	FunctionName string `json:"functionName"`
	Description  string `json:"description"`
}

func (*SAPConfig) Variant() registry.Variant { return registry.VariantSAP }
func (*SAPConfig) normalize() error          { return nil }

// BotConfig configures a bot action node.
type BotConfig struct {
	BotName     string `json:"botName"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

func (*BotConfig) Variant() registry.Variant { return registry.VariantBot }
func (*BotConfig) normalize() error          { return nil }

// IOTAlarmsConfig configures an IoT alarm node.
type IOTAlarmsConfig struct {
	AlarmType   string `json:"alarmType"`
	Threshold   string `json:"threshold"`
	Description string `json:"description"`
}

func (*IOTAlarmsConfig) Variant() registry.Variant { return registry.VariantIOTAlarms }
func (*IOTAlarmsConfig) normalize() error          { return nil }

// ErrorMessageConfig configures an error message node.
type ErrorMessageConfig struct {
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	ShowInUI     bool     `json:"showInUI"`
	LogToConsole bool     `json:"logToConsole"`
}

func (*ErrorMessageConfig) Variant() registry.Variant { return registry.VariantErrorMessage }

func (c *ErrorMessageConfig) normalize() error {
	if c.Severity == "" {
		c.Severity = SeverityError
	}
	return oneOf("severity", c.Severity, SeverityError, SeverityCritical, SeverityFatal)
}

// WarningMessageConfig configures a warning message node.
type WarningMessageConfig struct {
	Message        string   `json:"message"`
	Severity       Severity `json:"severity"`
	ShowInUI       bool     `json:"showInUI"`
	LogToConsole   bool     `json:"logToConsole"`
	Dismissible    bool     `json:"dismissible"`
	AutoDismiss    bool     `json:"autoDismiss"`
	DismissTimeout int      `json:"dismissTimeout"`
}

func (*WarningMessageConfig) Variant() registry.Variant { return registry.VariantWarningMessage }

func (c *WarningMessageConfig) normalize() error {
	if c.Severity == "" {
		c.Severity = SeverityWarning
	}
	if c.DismissTimeout < 0 {
		return fmt.Errorf("%w: dismissTimeout %d is negative", ErrInvalidConfig, c.DismissTimeout)
	}
	return oneOf("severity", c.Severity, SeverityWarning, SeverityInfo, SeverityNotice)
}

// Condition is one clause of an if block.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

var conditionOperators = []string{"equals", "notEquals", "contains", "greaterThan", "lessThan"}

// IfBlockConfig configures a branching node.
type IfBlockConfig struct {
	Condition   string      `json:"condition"`
	Operator    string      `json:"operator"`
	Conditions  []Condition `json:"conditions"`
	Description string      `json:"description"`
}

func (*IfBlockConfig) Variant() registry.Variant { return registry.VariantIfBlock }

func (c *IfBlockConfig) normalize() error {
	if c.Operator == "" {
		c.Operator = "AND"
	}
	if c.Conditions == nil {
		c.Conditions = []Condition{}
	}
	if err := oneOf("operator", c.Operator, "AND", "OR"); err != nil {
		return err
	}
	for i := range c.Conditions {
		if c.Conditions[i].Operator == "" {
			c.Conditions[i].Operator = "equals"
		}
		if err := oneOf(fmt.Sprintf("conditions[%d].operator", i), c.Conditions[i].Operator, conditionOperators...); err != nil {
			return err
		}
	}
	return nil
}

// AddCondition appends an empty equals clause, as the "add condition" button does.
func (c *IfBlockConfig) AddCondition() {
	c.Conditions = append(c.Conditions, Condition{Operator: "equals"})
}

// InformationConfig configures an information node.
type InformationConfig struct {
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Type    MessageType `json:"type"`
}

func (*InformationConfig) Variant() registry.Variant { return registry.VariantInformation }

func (c *InformationConfig) normalize() error {
	if c.Type == "" {
		c.Type = MessageInfo
	}
	return oneOf("type", c.Type, messageTypes...)
}

// ProcessCategorisationConfig configures a categorisation node.
type ProcessCategorisationConfig struct {
	CategoryName string `json:"categoryName"`
	CategoryType string `json:"categoryType"`
	Conditions   string `json:"conditions"`
	Description  string `json:"description"`
}

func (*ProcessCategorisationConfig) Variant() registry.Variant {
	return registry.VariantProcessCategorisation
}

func (c *ProcessCategorisationConfig) normalize() error {
	return oneOf("categoryType", c.CategoryType, "", "priority", "status", "type", "custom")
}

// ProcessTerminateConfig configures a terminating node.
type ProcessTerminateConfig struct {
	TerminationType string `json:"terminationType"`
	Message         string `json:"message"`
	StatusCode      string `json:"statusCode"`
	Description     string `json:"description"`
}

func (*ProcessTerminateConfig) Variant() registry.Variant { return registry.VariantProcessTerminate }

func (c *ProcessTerminateConfig) normalize() error {
	if c.TerminationType == "" {
		c.TerminationType = "success"
	}
	return oneOf("terminationType", c.TerminationType, "success", "error", "warning", "custom")
}

// ScheduleConfig configures a schedule node.
type ScheduleConfig struct {
	ScheduleType string `json:"scheduleType"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Frequency    string `json:"frequency"`
	Time         string `json:"time"`
	Description  string `json:"description"`
}

func (*ScheduleConfig) Variant() registry.Variant { return registry.VariantSchedule }

func (c *ScheduleConfig) normalize() error {
	if c.ScheduleType == "" {
		c.ScheduleType = "oneTime"
	}
	if c.Frequency == "" {
		c.Frequency = "daily"
	}
	if err := oneOf("scheduleType", c.ScheduleType, "oneTime", "recurring"); err != nil {
		return err
	}
	return oneOf("frequency", c.Frequency, "daily", "weekly", "monthly", "yearly")
}

// SecondaryFormConfig references a secondary form.
type SecondaryFormConfig struct {
	FormID      string `json:"formId"`
	FormName    string `json:"formName"`
	Description string `json:"description"`
}

func (*SecondaryFormConfig) Variant() registry.Variant { return registry.VariantSecondaryForm }
func (*SecondaryFormConfig) normalize() error          { return nil }

// newDraft returns the variant's config populated with its defaults.
func newDraft(v registry.Variant, nodeType string) Config {
	switch v {
	case registry.VariantStart:
		return &StartConfig{}
	case registry.VariantInput:
		return &InputConfig{Scale: ScaleUserSpecific}
	case registry.VariantOutput:
		return &OutputConfig{}
	case registry.VariantURL:
		return &URLConfig{}
	case registry.VariantStaticValue:
		return &StaticValueConfig{}
	case registry.VariantSubForm:
		return &SubFormConfig{}
	case registry.VariantComparison:
		return &ComparisonConfig{}
	case registry.VariantLogical:
		return &LogicalConfig{}
	case registry.VariantEntity:
		return &EntityConfig{Prefix: EntityPrefix(nodeType)}
	case registry.VariantNotification:
		return &NotificationConfig{Type: MessageInfo}
	case registry.VariantDelayNotification:
		return &DelayNotificationConfig{Type: MessageInfo}
	case registry.VariantBulkUpload:
		return &BulkUploadConfig{}
	case registry.VariantSAP:
		return &SAPConfig{}
	case registry.VariantBot:
		return &BotConfig{}
	case registry.VariantIOTAlarms:
		return &IOTAlarmsConfig{}
	case registry.VariantErrorMessage:
		return &ErrorMessageConfig{Severity: SeverityError, ShowInUI: true, LogToConsole: true}
	case registry.VariantWarningMessage:
		return &WarningMessageConfig{
			Severity:       SeverityWarning,
			ShowInUI:       true,
			LogToConsole:   true,
			Dismissible:    true,
			DismissTimeout: DefaultDismissTimeout,
		}
	case registry.VariantIfBlock:
		return &IfBlockConfig{Operator: "AND", Conditions: []Condition{}}
	case registry.VariantInformation:
		return &InformationConfig{Type: MessageInfo}
	case registry.VariantProcessCategorisation:
		return &ProcessCategorisationConfig{}
	case registry.VariantProcessTerminate:
		return &ProcessTerminateConfig{TerminationType: "success", StatusCode: "200"}
	case registry.VariantSchedule:
		return &ScheduleConfig{ScheduleType: "oneTime", Frequency: "daily"}
	case registry.VariantSecondaryForm:
		return &SecondaryFormConfig{}
	default:
		return &RawConfig{}
	}
}
