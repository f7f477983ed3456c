package rt

import (
	"github.com/tliron/commonlog"
)

var (
	rtLog     = commonlog.GetLogger("kiln.rt")
	loaderLog = commonlog.GetLogger("kiln.loader")
	accessLog = commonlog.GetLogger("kiln.access")
)
