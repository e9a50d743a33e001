// Package persistence stores index snapshots on disk.
//
// A snapshot file is a little-endian binary image of one generation of the
// index, closed by an xxhash64 checksum of everything before it:
//
//	header   magic "SNIX" | version | generation | analyzer | docCount | termCount | totalTermOccurrences
//	docs     docCount x {docID, contentHash, length, termCount, lastIndexedAt}, sorted by docID
//	terms    termCount x {term, documentFrequency, postingsOffset, postingsLength}, sorted by term
//	postings per term, df x {docOrdinal delta, termFrequency, position deltas...}
//	trailer  xxhash64
//
// Strings are a uvarint length followed by the bytes. The reverse map is not
// stored; it is rebuilt from the posting lists on load. The analyzer field is
// the fingerprint of the tokenizer options the terms were produced with.
package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/gcbaptista/go-notes-index/index"
)

const (
	// Magic identifies a snapshot file ("SNIX" read as little endian bytes).
	Magic uint32 = 'S' | 'N'<<8 | 'I'<<16 | 'X'<<24
	// FormatVersion is bumped on every incompatible layout change.
	FormatVersion uint32 = 2

	headerSize  = 4 + 4 + 8 + 8 + 8 + 8 + 8
	trailerSize = 8
)

// Header is the fixed-size prefix of a snapshot file.
type Header struct {
	Magic                uint32
	Version              uint32
	Generation           uint64
	Analyzer             uint64
	DocumentCount        uint64
	TermCount            uint64
	TotalTermOccurrences uint64
}

// Encode serializes snap into the snapshot file format.
func Encode(snap *index.Snapshot) []byte {
	ii := snap.Index
	docs := ii.Documents()
	terms := ii.Terms()

	ordinals := make(map[string]uint64, len(docs))
	for i, doc := range docs {
		ordinals[doc.DocID] = uint64(i)
	}

	buf := make([]byte, 0, headerSize+64*len(docs)+32*len(terms))
	buf = binary.LittleEndian.AppendUint32(buf, Magic)
	buf = binary.LittleEndian.AppendUint32(buf, FormatVersion)
	buf = binary.LittleEndian.AppendUint64(buf, snap.Generation)
	buf = binary.LittleEndian.AppendUint64(buf, snap.Analyzer)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(docs)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(terms)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ii.TotalTermOccurrences()))

	for _, doc := range docs {
		buf = appendString(buf, doc.DocID)
		buf = appendString(buf, doc.ContentHash)
		buf = binary.AppendUvarint(buf, uint64(doc.Length))
		buf = binary.AppendUvarint(buf, uint64(doc.TermCount))
		buf = binary.AppendVarint(buf, unixNanos(doc.LastIndexedAt))
	}

	// Posting blocks are built first so the term table can carry their offsets.
	var postings []byte
	for _, term := range terms {
		pl := ii.Lookup(term)
		offset := len(postings)
		var prev uint64
		for _, p := range pl {
			ord := ordinals[p.DocID]
			postings = binary.AppendUvarint(postings, ord-prev)
			prev = ord
			postings = binary.AppendUvarint(postings, uint64(p.TermFrequency))
			last := 0
			for _, pos := range p.Positions {
				postings = binary.AppendUvarint(postings, uint64(pos-last))
				last = pos
			}
		}
		buf = appendString(buf, term)
		buf = binary.AppendUvarint(buf, uint64(len(pl)))
		buf = binary.AppendUvarint(buf, uint64(offset))
		buf = binary.AppendUvarint(buf, uint64(len(postings)-offset))
	}
	buf = append(buf, postings...)

	return binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(buf))
}

// Decode parses a snapshot file image, verifying the checksum and every
// index invariant. Any failure means the image must be treated as corrupt.
func Decode(data []byte) (*index.Snapshot, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize+trailerSize {
		return nil, errors.New("file too short for checksum")
	}
	body := data[:len(data)-trailerSize]
	if want, got := binary.LittleEndian.Uint64(data[len(body):]), xxhash.Sum64(body); want != got {
		return nil, fmt.Errorf("checksum mismatch: stored %016x, computed %016x", want, got)
	}

	r := &reader{buf: body, pos: headerSize}
	if hdr.DocumentCount > uint64(r.remaining()) || hdr.TermCount > uint64(r.remaining()) {
		return nil, errors.New("header counts exceed file size")
	}

	docs := make([]index.Document, 0, hdr.DocumentCount)
	for i := uint64(0); i < hdr.DocumentCount; i++ {
		doc := index.Document{
			DocID:       r.str(),
			ContentHash: r.str(),
			Length:      r.int(),
			TermCount:   r.int(),
		}
		if nanos := r.varint(); nanos != 0 {
			doc.LastIndexedAt = time.Unix(0, nanos).UTC()
		}
		if r.err != nil {
			return nil, fmt.Errorf("document table: %w", r.err)
		}
		if i > 0 && docs[i-1].DocID >= doc.DocID {
			return nil, fmt.Errorf("document table not sorted at %d", i)
		}
		docs = append(docs, doc)
	}

	type termEntry struct {
		term           string
		df             int
		offset, length int
	}
	entries := make([]termEntry, 0, hdr.TermCount)
	for i := uint64(0); i < hdr.TermCount; i++ {
		e := termEntry{term: r.str(), df: r.int(), offset: r.int(), length: r.int()}
		if r.err != nil {
			return nil, fmt.Errorf("term table: %w", r.err)
		}
		if i > 0 && entries[i-1].term >= e.term {
			return nil, fmt.Errorf("term table not sorted at %d", i)
		}
		entries = append(entries, e)
	}

	block := body[r.pos:]
	postings := make(map[string]index.PostingList, len(entries))
	for _, e := range entries {
		if e.offset < 0 || e.length < 0 || e.offset+e.length > len(block) {
			return nil, fmt.Errorf("postings of %q out of range", e.term)
		}
		// A posting takes at least two bytes (ordinal delta and frequency)
		if e.df > e.length/2 {
			return nil, fmt.Errorf("postings of %q: document frequency %d exceeds block", e.term, e.df)
		}
		pr := &reader{buf: block[e.offset : e.offset+e.length]}
		pl := make(index.PostingList, 0, e.df)
		var ord uint64
		for j := 0; j < e.df; j++ {
			delta := pr.uvarint()
			if j > 0 && delta == 0 {
				return nil, fmt.Errorf("postings of %q repeat a document", e.term)
			}
			ord += delta
			if ord >= uint64(len(docs)) {
				return nil, fmt.Errorf("postings of %q reference document ordinal %d", e.term, ord)
			}
			tf := pr.int()
			if tf > pr.remaining() {
				return nil, fmt.Errorf("postings of %q: frequency %d exceeds block", e.term, tf)
			}
			positions := make([]int, tf)
			last := 0
			for k := range positions {
				last += pr.int()
				positions[k] = last
			}
			if pr.err != nil {
				return nil, fmt.Errorf("postings of %q: %w", e.term, pr.err)
			}
			pl = append(pl, index.Posting{DocID: docs[ord].DocID, TermFrequency: tf, Positions: positions})
		}
		if pr.remaining() != 0 {
			return nil, fmt.Errorf("postings of %q have %d trailing bytes", e.term, pr.remaining())
		}
		postings[e.term] = pl
	}

	ii, err := index.Build(docs, postings)
	if err != nil {
		return nil, err
	}
	if uint64(ii.TotalTermOccurrences()) != hdr.TotalTermOccurrences {
		return nil, fmt.Errorf("header records %d term occurrences, postings hold %d", hdr.TotalTermOccurrences, ii.TotalTermOccurrences())
	}
	return &index.Snapshot{Index: ii, Generation: hdr.Generation, Analyzer: hdr.Analyzer}, nil
}

// DecodeHeader parses and validates the fixed header without touching the body.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("file too short for header (%d bytes)", len(data))
	}
	hdr := Header{
		Magic:                binary.LittleEndian.Uint32(data[0:]),
		Version:              binary.LittleEndian.Uint32(data[4:]),
		Generation:           binary.LittleEndian.Uint64(data[8:]),
		Analyzer:             binary.LittleEndian.Uint64(data[16:]),
		DocumentCount:        binary.LittleEndian.Uint64(data[24:]),
		TermCount:            binary.LittleEndian.Uint64(data[32:]),
		TotalTermOccurrences: binary.LittleEndian.Uint64(data[40:]),
	}
	if hdr.Magic != Magic {
		return Header{}, fmt.Errorf("bad magic %08x", hdr.Magic)
	}
	if hdr.Version != FormatVersion {
		return Header{}, fmt.Errorf("unsupported format version %d", hdr.Version)
	}
	return hdr, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// reader walks a byte slice and records the first error; later reads return zero values.
type reader struct {
	buf []byte
	pos int
	err error
}

var errShort = errors.New("unexpected end of data")

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		r.err = errShort
		return 0
	}
	r.pos += n
	return v
}

func (r *reader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.buf[r.pos:])
	if n <= 0 {
		r.err = errShort
		return 0
	}
	r.pos += n
	return v
}

// int reads a uvarint that must fit a non-negative int bounded by the data size.
func (r *reader) int() int {
	v := r.uvarint()
	if v > uint64(len(r.buf))<<32 {
		if r.err == nil {
			r.err = fmt.Errorf("value %d out of range", v)
		}
		return 0
	}
	return int(v)
}

func (r *reader) str() string {
	n := r.uvarint()
	if r.err != nil {
		return ""
	}
	if n > uint64(r.remaining()) {
		r.err = errShort
		return ""
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s
}
