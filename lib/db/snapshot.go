package db

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Snapshot format shared by all engines
// --------------------------------------------------------------------------

const (
	snapshotMagic   = "PKVSNAP\x00" // File format identifier
	snapshotVersion = 1             // Format version
)

// Namespace of a snapshot entry.
type Namespace uint8

const (
	NamespaceData Namespace = iota
	NamespaceMeta
)

// SnapshotEntry is a single record of a snapshot.
type SnapshotEntry struct {
	Namespace Namespace
	Key       string
	Value     []byte
}

// WriteSnapshot writes a snapshot of count entries to w. collect is called once and must emit
// exactly count entries. The snapshot is self-describing, so a snapshot written by one engine
// can be loaded into any other engine.
//
// Layout (little endian):
//
//	magic [8]byte | version uint8 | engine-len uint8 | engine | count uint64 |
//	count x ( namespace uint8 | key-len uint32 | key | value-len uint32 | value )
func WriteSnapshot(w io.Writer, impl Implementation, count int, collect func(emit func(SnapshotEntry) error) error) error {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	// Write file header
	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(len(impl))); err != nil {
		return err
	}
	if _, err := bw.WriteString(string(impl)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(count)); err != nil {
		return err
	}

	written := 0
	err := collect(func(e SnapshotEntry) error {
		if err := binary.Write(bw, binary.LittleEndian, uint8(e.Namespace)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(e.Key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(e.Value); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		return err
	}
	if written != count {
		return fmt.Errorf("snapshot: announced %d entries but wrote %d", count, written)
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot and calls fn for every entry.
// It returns the engine that wrote the snapshot.
func ReadSnapshot(r io.Reader, fn func(SnapshotEntry) error) (Implementation, error) {
	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return "", err
	}
	if string(magicBytes) != snapshotMagic {
		return "", fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return "", err
	}
	if int(version) != snapshotVersion {
		return "", fmt.Errorf("unsupported version: %d (expected %d)", version, snapshotVersion)
	}

	var implLen uint8
	if err := binary.Read(br, binary.LittleEndian, &implLen); err != nil {
		return "", err
	}
	implBytes := make([]byte, implLen)
	if _, err := io.ReadFull(br, implBytes); err != nil {
		return "", err
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return "", err
	}

	for i := uint64(0); i < count; i++ {
		var ns uint8
		if err := binary.Read(br, binary.LittleEndian, &ns); err != nil {
			return "", err
		}
		if Namespace(ns) != NamespaceData && Namespace(ns) != NamespaceMeta {
			return "", fmt.Errorf("invalid namespace %d in entry %d", ns, i)
		}

		key, err := readChunk(br)
		if err != nil {
			return "", err
		}
		value, err := readChunk(br)
		if err != nil {
			return "", err
		}

		if err := fn(SnapshotEntry{Namespace: Namespace(ns), Key: string(key), Value: value}); err != nil {
			return "", err
		}
	}

	return Implementation(implBytes), nil
}

func readChunk(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
