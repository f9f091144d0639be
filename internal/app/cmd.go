package app

import (
	"fmt"
	"io"
)

// Command はagriguardのサブコマンド。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
	CommandHelp        Command = "help"
)

// commands はUsageの表示順を兼ねる。
var commands = []struct {
	cmd         Command
	description string
	needsConfig bool
}{
	{CommandServe, "ログインゲートとダッシュボードのHTTPサーバーを起動する（デフォルト）", true},
	{CommandWorker, "監査ログの定期削除を実行する", true},
	{CommandMigrate, "session_slots と auth_events のマイグレーションを適用する", true},
	{CommandHealthcheck, "起動中サーバーの /health を確認する（Docker HEALTHCHECK 用）", false},
	{CommandHelp, "このヘルプを表示する", false},
}

// ParseCommand は先頭の引数からサブコマンドを決定する。
// 引数が無い場合と未知のサブコマンドはCommandServeとして扱う。2番目以降の引数は無視する。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if args[0] == "-h" || args[0] == "--help" {
		return CommandHelp
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	return CommandServe
}

// NeedsConfig はサブコマンドの実行に環境変数の設定が必要かを返す。
func (c Command) NeedsConfig() bool {
	for _, spec := range commands {
		if spec.cmd == c {
			return spec.needsConfig
		}
	}
	return true
}

// Usage はサブコマンドの一覧を書き込む。
func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: agriguard [command]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.description)
	}
}
