/*
Package registry keeps the table descriptors and record types a process works with.

The registry system enables:
  - Declaring tables once and creating or updating them at startup
  - Loading table descriptors from YAML files
  - Resolving the table a Go record type is stored in

Table Registry:
Holds validated table descriptors by name:

	registry.RegisterTable(storagemodels.TableDescriptor{
	    Name:      "pages",
	    KeySchema: storagemodels.KeySchema{PartitionKey: "id", SortKey: "version"},
	    ...
	})

	// or from a directory of *.yaml files
	err := registry.Default().LoadDir("/etc/pages/tables")

Type Registry:
Associates Go types with the table that stores them:

	registry.RegisterType[Page]("pages")
	table, ok := registry.TableFor[Page]()

The registries are thread-safe and are usually populated during initialization.
*/
package registry
