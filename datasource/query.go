package datasource

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound represents a lookup for an unknown resource
	ErrNotFound = errors.New("not found")
)

// NamespaceTrait is the trait every event query matches on
const NamespaceTrait = "namespace"

// SortServices sorts services case-insensitively by name
func SortServices(services []Service) {
	sort.SliceStable(services, func(i, j int) bool {
		return strings.ToLower(services[i].Name) < strings.ToLower(services[j].Name)
	})
}

// FilterServices returns a sorted copy of the services of type typ, all services when typ is empty
func FilterServices(services []Service, typ string) []Service {
	result := make([]Service, 0, len(services))
	for _, s := range services {
		if typ == "" || strings.EqualFold(s.Type, typ) {
			result = append(result, s)
		}
	}
	SortServices(result)

	return result
}

// FindService returns the first service called name of type typ, of any type when typ is empty
func FindService(services []Service, name, typ string) (*Service, error) {
	for i := range services {
		if services[i].Name == name && (typ == "" || services[i].Type == typ) {
			s := services[i]
			return &s, nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "service %s", ServiceKey(typ, name))
}

// ServiceKey returns the snapshot lookup key of a service
func ServiceKey(typ, name string) string {
	return typ + "/" + name
}

// MailboxKey returns the snapshot lookup key of a mailbox
func MailboxKey(service, name string) string {
	return service + "/" + name
}

// MatchTraits reports whether traits contain namespace and every supplied pair
func MatchTraits(traits map[string]string, namespace string, match ...Trait) bool {
	if traits[NamespaceTrait] != namespace {
		return false
	}
	for _, m := range match {
		v, ok := traits[m.Name]
		if !ok || v != m.Value {
			return false
		}
	}

	return true
}

// FilterEvents returns the events matching namespace and traits in source order
func FilterEvents(events []Event, namespace string, traits ...Trait) []Event {
	result := make([]Event, 0)
	for _, e := range events {
		if MatchTraits(e.Traits, namespace, traits...) {
			result = append(result, e)
		}
	}

	return result
}

// FilterMetrics returns the metrics whose name starts with query in source order
func FilterMetrics(metrics []Metric, query string) []Metric {
	result := make([]Metric, 0)
	for _, m := range metrics {
		if strings.HasPrefix(m.Name, query) {
			result = append(result, m)
		}
	}

	return result
}

// FindEvent returns the event with id
func FindEvent(events []Event, id string) (*Event, error) {
	for i := range events {
		if events[i].ID == id {
			e := events[i]
			return &e, nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "event %s", id)
}

// FindMail returns the mail with messageID
func FindMail(mails []Mail, messageID string) (*Mail, error) {
	for i := range mails {
		if mails[i].Data.MessageID == messageID {
			m := mails[i]
			return &m, nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "mail %s", messageID)
}

// FindConfig returns the config with id
func FindConfig(configs []Config, id string) (*Config, error) {
	for i := range configs {
		if configs[i].ID == id {
			c := configs[i]
			return &c, nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "config %s", id)
}

// traitParams returns the namespace and traits as query params
func traitParams(namespace string, traits []Trait) map[string][]string {
	params := map[string][]string{
		NamespaceTrait: {namespace},
	}
	for _, t := range traits {
		params[t.Name] = append(params[t.Name], t.Value)
	}

	return params
}

// ParseTraits reads namespace and traits from query params, the inverse of traitParams
func ParseTraits(params map[string][]string) (string, []Trait) {
	namespace := ""
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	traits := []Trait{}
	for _, name := range names {
		values := params[name]
		if name == NamespaceTrait && len(values) > 0 {
			namespace, values = values[0], values[1:]
		}
		for _, v := range values {
			traits = append(traits, Trait{Name: name, Value: v})
		}
	}

	return namespace, traits
}
