// texconv - PVR texture converter
//
// Converts PVR legacy containers (plain, zlib wrapped PVRZ and zstd packed
// ZPVR) to and from PNG, exports them as DDS through the Direct3D bridge and
// re-encodes them as PVRTC.
//
// Usage:
//
//	texconv info input.pvr                     # Show texture info
//	texconv decode input.pvr output.png        # PVR → PNG
//	texconv encode input.png output.pvr        # PNG/BMP/TIFF/WebP → PVR
//	texconv dds input.pvr output.dds           # PVR → DDS
//	texconv pvrtc input.pvr output.pvr         # Re-encode as PVRTC
//	texconv pack input.pvr output.zpvr         # PVR → ZPVR
//	texconv unpack input.zpvr output.pvr       # ZPVR → PVR
//	texconv batch decode|encode dir/ out/      # Batch convert directory
package main

import (
	"fmt"
	"os"

	"github.com/Luzifer/go_helpers/v2/str"
	"github.com/Luzifer/rconfig/v2"
	"github.com/sirupsen/logrus"

	"github.com/EchoTools/pvrtools/pkg/endian"
	"github.com/EchoTools/pvrtools/pkg/engine"
	"github.com/EchoTools/pvrtools/pkg/pvr"
)

var (
	cfg = struct {
		Format         string `flag:"format,f" default:"ARGB_8888" description:"Pixel format to encode to"`
		Order          string `flag:"order" default:"little" description:"Byte order of encoded texels (little, big)"`
		Mipmaps        int    `flag:"mipmaps,m" default:"0" description:"Number of mipmap levels to encode (0 = full chain)"`
		Level          int    `flag:"level,l" default:"0" description:"Mipmap level to decode"`
		LogLevel       string `flag:"log-level" default:"info" description:"Log level (debug, info, warn, error, fatal)"`
		VersionAndExit bool   `flag:"version" default:"false" description:"Prints current version and exits"`
	}{}

	version = "dev"
)

// commands maps each command to the number of positional arguments it takes.
var commands = map[string]int{
	"info":   1,
	"decode": 2,
	"encode": 2,
	"dds":    2,
	"pvrtc":  2,
	"pack":   2,
	"unpack": 2,
	"batch":  3,
}

var byteOrders = []string{"little", "big"}

func initApp() (err error) {
	if err = rconfig.ParseAndValidate(&cfg); err != nil {
		return fmt.Errorf("parsing CLI options: %w", err)
	}

	l, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log-level: %w", err)
	}
	logrus.SetLevel(l)

	if !str.StringInSlice(cfg.Order, byteOrders) {
		return fmt.Errorf("byte order must be one of %v, got %q", byteOrders, cfg.Order)
	}
	if cfg.Mipmaps < 0 || cfg.Level < 0 {
		return fmt.Errorf("mipmap counts must not be negative")
	}

	return nil
}

// encodeOptions returns the format and byte order selected on the command line.
func encodeOptions() (pvr.PixelFormat, endian.Order, error) {
	format, err := pvr.ParsePixelFormat(cfg.Format)
	if err != nil {
		return 0, 0, err
	}
	order := endian.Little
	if cfg.Order == "big" {
		order = endian.Big
	}
	return format, order, nil
}

func main() {
	var err error
	if err = initApp(); err != nil {
		logrus.WithError(err).Fatal("initializing app")
	}

	if cfg.VersionAndExit {
		fmt.Printf("texconv %s\n", version) //nolint:forbidigo
		os.Exit(0)
	}

	args := rconfig.Args()[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	command, args := args[0], args[1:]
	want, ok := commands[command]
	if !ok {
		printUsage()
		logrus.WithField("command", command).Fatal("unknown command")
	}
	if len(args) != want {
		printUsage()
		logrus.WithFields(logrus.Fields{"command": command, "args": len(args), "want": want}).Fatal("wrong number of arguments")
	}

	ctx := engine.New(engine.WithLogger(logrus.StandardLogger()))
	if err = ctx.Init(); err != nil {
		logrus.WithError(err).Fatal("initializing engine")
	}
	defer ctx.Shutdown()

	format, order, err := encodeOptions()
	if err != nil && (command == "encode" || command == "batch") {
		logrus.WithError(err).Fatal("parsing encode options")
	}

	app := &app{
		ctx:     ctx,
		out:     os.Stdout,
		format:  format,
		order:   order,
		mipmaps: cfg.Mipmaps,
		level:   cfg.Level,
	}
	if err = app.run(command, args); err != nil {
		logrus.WithError(err).WithField("command", command).Fatal("command failed")
	}
}

func printUsage() {
	fmt.Println("texconv - PVR texture converter")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  texconv info <input>                          # Show info")
	fmt.Println("  texconv decode <input> <output.png>           # PVR → PNG")
	fmt.Println("  texconv encode <input.png> <output>           # PNG → PVR/PVRZ/ZPVR")
	fmt.Println("  texconv dds <input> <output.dds>              # PVR → DDS")
	fmt.Println("  texconv pvrtc <input> <output>                # Re-encode as PVRTC")
	fmt.Println("  texconv pack <input> <output.zpvr>            # Pack into ZPVR")
	fmt.Println("  texconv unpack <input.zpvr> <output>          # Unpack ZPVR")
	fmt.Println("  texconv batch <decode|encode> <dir> <out>     # Batch convert")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --format NAME    Pixel format for encode (default ARGB_8888)")
	fmt.Println("  --order ORDER    little or big (default little)")
	fmt.Println("  --mipmaps N      Levels to encode, 0 for the full chain")
	fmt.Println("  --level N        Level to decode")
	fmt.Println()
	fmt.Println("Pixel formats:")
	for _, f := range pvr.Formats() {
		fmt.Printf("  %-16s %s, %d bpp\n", f, pvr.Classify(f), pvr.Depth(f))
	}
}
