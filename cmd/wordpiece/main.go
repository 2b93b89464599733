// Command wordpiece tokenizes text with a wordpiece vocabulary.
//
// Usage:
//
//	wordpiece tokenize --vocab-path=vocab.txt "some text"
//	wordpiece compile --vocab-path=tokenizer.json
//	wordpiece batch --vocab-path=vocab.txt --input=lines.txt --output=tokens.parquet
package main

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

func main() {
	err := newRootCmd().Execute()
	klog.Flush()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
