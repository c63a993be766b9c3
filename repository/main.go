package repository

import (
	"github.com/lamvt/vaultstream/infra"
)

type Repository struct {
	Objects ObjectIndex
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	var objects ObjectIndex
	if infra.Postgres != nil {
		objects = NewObjectRepository(infra.Postgres.DB)
	} else {
		objects = NewMemoryObjectIndex()
	}
	repository = &Repository{
		Objects: objects,
	}
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}
