// Package mongo implements store.Store on MongoDB with the official v2
// driver. Every table of the SQL backends is a collection here; write
// transactions, job creation, counter folding and job expiration run inside
// multi-document transactions, so the server must be a replica set (a
// single-node replica set is enough).
//
// The caller owns the client lifecycle; mongo never closes it. Pass the
// database handle through the constructor:
//
//	import (
//	    mongod "go.mongodb.org/mongo-driver/v2/mongo"
//	    "go.mongodb.org/mongo-driver/v2/mongo/options"
//	    "github.com/xraph/jobrow/store/mongo"
//	)
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	store := mongo.New(client.Database("jobrow"))
//	store.Migrate(ctx)
package mongo
