package datasource

import (
	"encoding/json"
	"time"
)

// Service represents a mocked service
type Service struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Type        string   `json:"type"`
	Contact     *Contact `json:"contact,omitempty"`
	Metrics     []Metric `json:"metrics,omitempty"`
	// Servers lists the service endpoints
	Servers []Server `json:"servers,omitempty"`
}

// Contact of a service
type Contact struct {
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Email string `json:"email,omitempty"`
}

// Server is an endpoint a service listens on
type Server struct {
	URL         string `json:"url,omitempty"`
	Host        string `json:"host,omitempty"`
	Description string `json:"description,omitempty"`
}

// Trait is a name/value pair an event is labeled with
type Trait struct {
	Name  string
	Value string
}

// Event represents a recorded request, message or log
type Event struct {
	ID     string            `json:"id"`
	Traits map[string]string `json:"traits"`
	Time   time.Time         `json:"time"`
	Data   json.RawMessage   `json:"data,omitempty"`
}

// Metric represents a named measurement
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Mailbox represents a mailbox of a mail service
type Mailbox struct {
	Name         string `json:"name"`
	Username     string `json:"username,omitempty"`
	Description  string `json:"description,omitempty"`
	NumMessages  int    `json:"numMessages"`
	NumFolders   int    `json:"numFolders,omitempty"`
	ServiceName  string `json:"service,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// Address is a mail address
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// MessageInfo summarizes a message in a mailbox
type MessageInfo struct {
	MessageID string    `json:"messageId"`
	Subject   string    `json:"subject"`
	From      []Address `json:"from"`
	To        []Address `json:"to"`
	Date      time.Time `json:"date"`
}

// Mail represents a full message
type Mail struct {
	Service string  `json:"service"`
	Data    Message `json:"data"`
}

// Message is the content of a mail
type Message struct {
	MessageID   string       `json:"messageId"`
	Subject     string       `json:"subject"`
	From        []Address    `json:"from"`
	To          []Address    `json:"to"`
	Cc          []Address    `json:"cc,omitempty"`
	Date        time.Time    `json:"date"`
	ContentType string       `json:"contentType,omitempty"`
	Body        string       `json:"body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment of a message
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	// Data is the base64 encoded content, only present in snapshots
	Data string `json:"data,omitempty"`
}

// ExampleRequest asks for generated example data of a schema
type ExampleRequest struct {
	// Name identifies the schema, used as lookup key in snapshots
	Name         string          `json:"name"`
	Schema       json.RawMessage `json:"schema,omitempty"`
	ContentTypes []string        `json:"contentTypes,omitempty"`
}

// Example is a generated example value
type Example struct {
	ContentType string `json:"contentType"`
	Value       string `json:"value"`
	Error       string `json:"error,omitempty"`
}

// Config represents a loaded configuration file
type Config struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	Provider string    `json:"provider"`
	Time     time.Time `json:"time"`
	// Data is the raw file content, only present in snapshots
	Data string `json:"data,omitempty"`
}

// MailboxSnapshot is a mailbox together with its messages
type MailboxSnapshot struct {
	Mailbox  Mailbox       `json:"mailbox"`
	Messages []MessageInfo `json:"messages"`
}

// Snapshot is the static document backing the demo source
type Snapshot struct {
	Services []Service `json:"services"`
	// ServiceDetails is keyed by "<type>/<name>"
	ServiceDetails map[string]Service `json:"serviceDetails"`
	Events         []Event            `json:"events"`
	Metrics        []Metric           `json:"metrics"`
	// Mailboxes is keyed by "<service>/<mailbox>"
	Mailboxes map[string]MailboxSnapshot `json:"mailboxes"`
	Mails     []Mail                     `json:"mails"`
	Configs   []Config                   `json:"configs"`
	// Examples is keyed by schema name
	Examples map[string][]Example `json:"examples"`
}
