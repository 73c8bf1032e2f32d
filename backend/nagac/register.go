package nagac

import (
	"github.com/gogpu/shadercache"
	"github.com/gogpu/shadercache/backend"
)

func init() {
	backend.Register("nagac", func() shadercache.Compiler { return New() })
}
