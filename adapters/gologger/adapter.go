package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const componentPrefix = "spine."

// ComponentName qualifies a bare component name with the spine prefix.
func ComponentName(component string) string {
	component = strings.TrimSpace(component)
	if component == "" {
		return strings.TrimSuffix(componentPrefix, ".")
	}
	if strings.HasPrefix(component, componentPrefix) {
		return component
	}
	return componentPrefix + component
}

// ComponentLogger resolves the logger for a spine component (provider, then
// logger, then nop) and tags it with a component field when it supports one.
func ComponentLogger(component string, provider glog.LoggerProvider, logger glog.Logger) glog.Logger {
	name := ComponentName(component)
	_, resolved := glog.Resolve(name, provider, logger)
	if fields, ok := resolved.(glog.FieldsLogger); ok {
		return fields.WithFields(map[string]any{"component": name})
	}
	return resolved
}

// JobLogger is ComponentLogger in the go-job logger contract, for the attempt
// hooks the worker installs.
func JobLogger(component string, provider glog.LoggerProvider) job.Logger {
	return job.GoLogger(ComponentLogger(component, provider, nil))
}
