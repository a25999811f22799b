// Package util holds helpers shared by the db engines: key hashing for sharded engines and the
// statistics they report through db.KVDB.GetInfo.
package util
