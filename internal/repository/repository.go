// Package repository wires the storage backends into a storage.Registry.
package repository

import (
	"github.com/Rrens/flagr/internal/repository/memory"
	"github.com/Rrens/flagr/internal/repository/mongo"
	"github.com/Rrens/flagr/internal/repository/postgres"
	"github.com/Rrens/flagr/internal/repository/redis"
	"github.com/Rrens/flagr/internal/repository/sqlstore"
	"github.com/Rrens/flagr/internal/storage"
)

// NewRegistry returns a registry with every built-in backend
func NewRegistry() *storage.Registry {
	r := storage.NewRegistry()
	r.Register("memory", memory.Open)
	r.Register("redis", redis.Open)
	r.Register("sqlite", sqlstore.OpenSQLite)
	r.Register("mysql", sqlstore.OpenMySQL)
	r.Register("postgres", postgres.Open)
	r.Register("mongo", mongo.Open)
	return r
}
