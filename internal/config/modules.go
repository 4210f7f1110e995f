package config

import (
	_ "github.com/artipie/artipie/internal/hubmodule/apk"
	_ "github.com/artipie/artipie/internal/hubmodule/composer"
	_ "github.com/artipie/artipie/internal/hubmodule/debian"
	_ "github.com/artipie/artipie/internal/hubmodule/docker"
	_ "github.com/artipie/artipie/internal/hubmodule/files"
	_ "github.com/artipie/artipie/internal/hubmodule/golang"
	_ "github.com/artipie/artipie/internal/hubmodule/maven"
	_ "github.com/artipie/artipie/internal/hubmodule/npm"
	_ "github.com/artipie/artipie/internal/hubmodule/pypi"
)
