/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"sync"
)

// typeRegistry maps a Go record type to the table that stores it.
var (
	typeRegistry = make(map[reflect.Type]string)
	mu           sync.RWMutex
)

// RegisterType associates T with table. Registering T twice panics to prevent
// accidental overrides.
func RegisterType[T any](table string) {
	t := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()
	if existing, exists := typeRegistry[t]; exists {
		panic(fmt.Sprintf("type registry: %s already stored in table %q", t, existing))
	}
	typeRegistry[t] = table
}

// TableFor returns the table registered for T, if any.
func TableFor[T any]() (string, bool) {
	t := reflect.TypeFor[T]()

	mu.RLock()
	defer mu.RUnlock()
	table, ok := typeRegistry[t]
	return table, ok
}

// MustTableFor is TableFor for types registered at init time.
func MustTableFor[T any]() string {
	table, ok := TableFor[T]()
	if !ok {
		panic(fmt.Sprintf("type registry: no table registered for %s", reflect.TypeFor[T]()))
	}
	return table
}
