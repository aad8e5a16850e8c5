package main

import (
	"context"

	"cloudeng.io/cmdutil/subcmd"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
)

var cmdSet *subcmd.CommandSet

func init() {
	compressCmd := subcmd.NewCommand("compress",
		subcmd.MustRegisterFlagStruct(&compressFlags{}, nil, nil),
		runCompress, subcmd.AtLeastNArguments(0))
	compressCmd.Document(`compress a file or stdin into a blox chunk. Files may be local, on S3 or a URL.`)

	decompressCmd := subcmd.NewCommand("decompress",
		subcmd.MustRegisterFlagStruct(&decompressFlags{}, nil, nil),
		runDecompress, subcmd.AtLeastNArguments(0))
	decompressCmd.Document(`decompress a blox chunk from a file or stdin.`)

	getitemCmd := subcmd.NewCommand("getitem",
		subcmd.MustRegisterFlagStruct(&getitemFlags{}, nil, nil),
		runGetItem, subcmd.ExactlyNumArguments(1))
	getitemCmd.Document(`print nitems elements starting at start without decompressing the whole chunk.`)

	cmdSet = subcmd.NewCommandSet(compressCmd, decompressCmd, getitemCmd)
	cmdSet.Document(`compress, decompress and query blox chunks. Files may be local, on S3 or a URL.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	cmdSet.MustDispatch(context.Background())
}
