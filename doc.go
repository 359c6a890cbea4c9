/*
Package colldb exposes named collections of JSON-like records, stored in an
ordered key-value store, as CRUD operations with automatically maintained
secondary indexes.

We implement:

1. Collections, holding opaque records (JSON object shape) keyed by a
generated, lexically sortable id.

2. Secondary indexes, allowing prefix lookup of records by application-chosen
key parts, maintained by this layer rather than the store.

3. Pluggable ordered key-value backends (Bolt for persistence, an in-memory
one for tests and embedding).

4. An HTTP boundary mapping the collection operations onto routes.

# Technical Details

**Key space.**
The store holds a single flat, prefix-ordered key space. A key is a sequence
of string parts. A record lives at (collection, id). Each index entry lives at
(collection+indexSuffix, indexName, keyParts..., id) with an empty value; the
suffix token contains a byte illegal in collection names, so a collection's
primary namespace can never collide with any index namespace.

**Key encoding.**
Parts are encoded with a marker-and-terminator encoding: each part opens with
0x02 and ends with 0x00, and 0x00 bytes inside a part are written as
0x00 0xFF. Encoded keys compare bytewise in the same order as component-wise
comparison of the part sequences, and the encoding of a part-sequence prefix
is a byte prefix of every key extending it, which is what prefix scans rely
on.

**Index maintenance.**
The primary write and the per-index entry writes are independent, non-atomic
operations. Index entries are fanned out concurrently and awaited jointly.
On replace/merge, entries derived from the old record are deleted before
entries derived from the new record are written. A crash between the primary
write and the fan-out can leave entries missing or dangling; subcollection
listing skips dangling entries, missing ones are simply not found until
corrected. There is no rollback and no garbage collection pass.

**Versionstamps.**
The store assigns an opaque monotonic marker to every written key. Results
carry the marker observed by the read or write that produced them; a listing
is not a consistent snapshot.
*/
package colldb
