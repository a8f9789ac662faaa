package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorInactiveResource marks lookups that found the record but it is disabled.
var ErrorInactiveResource = errors.New("resource is inactive")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
