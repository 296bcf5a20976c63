// Package manifest decodes class manifests (*.classes.toml).
//
// A manifest is a list of [[class]] tables in declaration order:
//
//	[[class]]
//	name = "Animal"
//	  [[class.member]]
//	  name = "speak"
//	  markers = ["final"]
//
//	[[class]]
//	name = "Dog"
//	bases = ["Animal"]
//	  [[class.member]]
//	  name = "speak"
//	  markers = ["force_override"]
//
// Member keys: name, kind (method|staticmethod|classmethod|property|data,
// default method), markers (applied in order), frozen. Class keys: name,
// bases, opaque, doc. Identifiers are NFC-normalized.
//
// Parse only checks the shape of the file. Deriving classes and running the
// override checks is the driver's job.
package manifest
