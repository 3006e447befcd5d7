package notifier

import logx "classbell/pkg/logx"

func nopLog() logx.Logger { return logx.Nop() }
