// wallet-init 初始化钱包材料：读取助记词，用用户密码包裹（keystore/scrypt）
// 后写入 secretstore。swapd 运行期间凭证只在内存中短暂存在，长期落盘的
// 只有这里写入的包裹产物。
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/betbot/swapcore/internal/wallet"
	"github.com/betbot/swapcore/pkg/secretstore"
)

func main() {
	var (
		storePath = flag.String("store", getenv("SWAPCORE_SECRET_STORE_PATH", "data/secretstore"), "secretstore 目录")
		storeKey  = flag.String("store-key", os.Getenv("SWAPCORE_SECRET_STORE_KEY"), "secretstore 加密 key（32 字节，hex/base64）")
	)
	flag.Parse()

	var encKey []byte
	if strings.TrimSpace(*storeKey) != "" {
		k, err := secretstore.ParseKey(*storeKey)
		if err != nil {
			fatal(err)
		}
		encKey = k
	}

	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *storePath,
		EncryptionKey: encKey,
	})
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	fmt.Fprintln(os.Stderr, "请输入助记词（12/15/18/21/24 个单词），输入完成后回车：")
	mnemonic := strings.TrimSpace(readLine())
	if mnemonic == "" {
		fatal(errors.New("mnemonic is empty"))
	}

	password, err := readPassword("请输入会话密码（用于解锁交易）：")
	if err != nil {
		fatal(err)
	}
	confirm, err := readPassword("再次输入确认：")
	if err != nil {
		fatal(err)
	}
	if password != confirm {
		fatal(errors.New("两次输入不一致"))
	}
	if len(password) < 8 {
		fatal(errors.New("密码至少 8 个字符"))
	}

	svc := wallet.NewService(store, "", 0)
	if err := svc.StoreMnemonic(mnemonic, password); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "✅ 钱包材料已写入 secretstore: %s\n", *storePath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func readLine() string {
	br := bufio.NewReader(os.Stdin)
	s, _ := br.ReadString('\n')
	return strings.TrimSpace(s)
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
