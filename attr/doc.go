/*
Package attr implements the attribute codec: a closed set of dynamically typed
values and their conversion to and from the store's tagged wire format.

Records are plain maps of field name to Value:

	rec := attr.Record{
	    "id":       attr.String("page-1"),
	    "revision": attr.Int(3),
	    "tags":     attr.StringSet{"draft", "home"},
	    "versions": attr.List{attr.Map{"title": attr.String("Welcome")}},
	}

	item, err := attr.Encode(rec)   // map[string]types.AttributeValue
	back, err := attr.Decode(item)  // round-trips to rec

Numbers keep their decimal text, so no precision is lost on the way through.
Empty lists and maps stay empty lists and maps. Decoding an attribute without
a recognized tag fails with a MalformedAttributeError naming the field path,
for example "versions[1].title".

Struct-typed callers can go through Marshal and Unmarshal, which use the
attributevalue encoder and its `dynamodbav` tags.
*/
package attr
