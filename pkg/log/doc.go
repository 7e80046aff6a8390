/*
Package log provides Strata's structured logging on top of zerolog: a
package-level Logger, component-scoped child loggers, and level/format
configuration. It adds the component/branch/txn field conventions Strata
uses throughout the engine.
*/
package log
