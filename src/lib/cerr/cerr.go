package cerr

import (
	"fmt"
	"sort"
	"strings"
)

var _ error = ContextualError{}
var _ interface{ Unwrap() error } = ContextualError{}

type F map[string]interface{}

// Context accumulates fields describing the circumstances of an error
// before it is created with Error.
type Context struct {
	ContextFields F
	cause         error
}

type ContextualError struct {
	Context Context
	Message string
}

func Field(key string, value interface{}) Context {
	return Context{}.Field(key, value)
}

func Fields(fields F) Context {
	return Context{}.Fields(fields)
}

func Wrap(err error) Context {
	return Context{}.Wrap(err)
}

func Error(message string) error {
	return Context{}.Error(message)
}

func (c Context) Field(key string, value interface{}) Context {
	return c.Fields(F{key: value})
}

func (c Context) Fields(fields F) Context {
	merged := F{}
	for k, v := range c.ContextFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return Context{
		ContextFields: merged,
		cause:         c.cause,
	}
}

func (c Context) Wrap(err error) Context {
	return Context{
		ContextFields: c.ContextFields,
		cause:         err,
	}
}

func (c Context) Error(message string) error {
	fields := F{}
	// fields of a wrapped contextual error are hoisted so the outermost
	// error carries the whole story when logged
	if inner, ok := c.cause.(ContextualError); ok {
		for k, v := range inner.Context.ContextFields {
			fields[k] = v
		}
	}
	for k, v := range c.ContextFields {
		fields[k] = v
	}

	return ContextualError{
		Context: Context{
			ContextFields: fields,
			cause:         c.cause,
		},
		Message: message,
	}
}

func (c ContextualError) Unwrap() error {
	return c.Context.cause
}

func (c ContextualError) Error() string {
	if c.Context.cause == nil {
		return c.Message
	}

	return fmt.Sprintf("%s: %s", c.Message, c.Context.cause.Error())
}

// Describe renders the message with its fields in a stable order, for places
// that can't log structured output.
func (c ContextualError) Describe() string {
	keys := make([]string, 0, len(c.Context.ContextFields))
	for k := range c.Context.ContextFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{c.Error()}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.Context.ContextFields[k]))
	}

	return strings.Join(parts, " ")
}
