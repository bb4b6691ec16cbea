package conf

import (
	"fmt"

	"go.uber.org/fx"
)

// NewModule creates an Fx module for a named configuration loader.
// The name is used as both the Fx module name and the DI named tag for the
// provided *Loader and *Tree. The file is loaded when the container first
// requests the loader; a load failure fails container construction.
// Call multiple times with different names to resolve multiple
// configuration files.
//
//nolint:ireturn // fx.Option is the standard return type for Fx modules
func NewModule(name, filePath string, opts ...Option) fx.Option {
	if name == "" {
		return fx.Error(ErrEmptyModuleName)
	}

	tag := fmt.Sprintf(`name:"%s"`, name)

	return fx.Module(name,
		fx.Provide(
			fx.Annotate(
				func() (*Loader, error) {
					loader := NewLoader(opts...)

					err := loader.Load(filePath)
					if err != nil {
						return nil, err
					}

					return loader, nil
				},
				fx.ResultTags(tag),
			),
			fx.Annotate(
				func(loader *Loader) *Tree {
					return loader.Tree()
				},
				fx.ParamTags(tag),
				fx.ResultTags(tag),
			),
		),
	)
}
