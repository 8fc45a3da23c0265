// Package blocktype declares block types: their fields, each field's scope
// and type, and schema defaults.
//
// Block types are written in CUE:
//
//	block: html: {
//	    display_name:  "Text"
//	    content_field: "data"
//	    fields: {
//	        display_name: {scope: "settings", type: "string", default: "Text"}
//	        data:         {scope: "content", type: "string", default: ""}
//	    }
//	}
//
// Declarations are unified with an embedded schema before compilation, so
// structural mistakes surface as CUE errors with positions. A catalog of
// built-in types is embedded; more can be loaded from a directory.
package blocktype
