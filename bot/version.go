package bot

import "github.com/Masterminds/semver/v3"

var (
	APPNAME = "muzi"
	VERSION = semver.MustParse(VERSION_MAIN + VERSION_PRERELEASE + VERSION_BUILD_METADATA)

	// VERSION_MAIN 主版本号
	VERSION_MAIN = "0.3.0"
	// VERSION_PRERELEASE 先行版本号
	VERSION_PRERELEASE = "-beta"
	// VERSION_BUILD_METADATA 版本编译信息，构建时注入
	VERSION_BUILD_METADATA = ""
)
