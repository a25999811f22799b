package maple

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/pKV/lib/db"
	dbtesting "github.com/ValentinKolb/pKV/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func TestSingleShard(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB(1 shard)", func() db.KVDB {
		return NewMapleDB(&DBOptions{NumShards: 1})
	})
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func TestGetInfo(t *testing.T) {
	database := NewMapleDB(&DBOptions{NumShards: 4})
	defer database.Close()

	for i := 0; i < 40; i++ {
		if err := database.Set(fmt.Sprintf("key-%02d", i), make([]byte, 10)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	info := database.GetInfo()
	if info.DbType != db.ImplMaple {
		t.Errorf("DbType = %v, want %v", info.DbType, db.ImplMaple)
	}
	if info.Entries != 40 {
		t.Errorf("Entries = %d, want 40", info.Entries)
	}
	// every key is 6 bytes and every value 10
	if info.SizeBytes != 40*16 {
		t.Errorf("SizeBytes = %d, want %d", info.SizeBytes, 40*16)
	}
}
