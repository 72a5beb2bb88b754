package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ LeaseSource    = (*Processor)(nil)
	_ LeaseHandler   = (*Processor)(nil)
	_ BackoffPolicy  = ExponentialBackoff{}
	_ Executor       = ExecutorFunc(nil)
	_ ProcessingHook = nopHook{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
