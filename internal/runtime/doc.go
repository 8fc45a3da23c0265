// Package runtime loads blocks out of the blockstore and runs their
// handlers.
//
// A block is addressed by a usage key (lb:<context>:<type>:<id>). The
// usage's learning context decides who may view or edit it and which
// definition file it comes from. Loading a block binds it to the current
// fingerprint of that file; if the fingerprint's field values are not
// already cached, the file is parsed and the parsed values are committed
// to the shared field cache.
//
// Block field reads fall back to the block type's schema default when the
// cache has no value.
package runtime
