// Package olx parses block definition files.
//
// A definition is an XML document whose root element names the block type:
//
//	<unit display_name="Week 1">
//	    <xblock-include definition="html/intro" />
//	    <xblock-include source="shared" definition="problem/p1" usage="quiz" />
//	</unit>
//
// <xblock-include> elements pull in child definitions, either from the same
// bundle revision or, when source= names a bundle link, from the linked
// bundle version.
package olx
