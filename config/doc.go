/*
Package config loads the process configuration of a store consumer.

Configuration comes from a YAML file. A .env file next to it is loaded first,
then ${VAR} references in the file are expanded and RECORDSTORE_* variables
override the default connection:

	connections:
	  default:
	    region: us-east-1
	    endpoint: ${DYNAMO_ENDPOINT}
	table_prefix: dev-
	tables_dir: "{config-dir}/tables"
	log:
	  level: debug

The {config-dir} placeholder in tables_dir resolves to the directory of the file.
*/
package config
