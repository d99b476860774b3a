package migrate

import "github.com/pgshift/pgshift/pkg/migrate/config"

// Runner : runs migration between a source and a target
type Runner[S any, T any] interface {
	Run(cfg config.Config[S, T]) error // fresh run
}
