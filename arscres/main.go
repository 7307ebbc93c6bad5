// Command arscres resolves resources of an APK for a device configuration.
//
//	arscres -profile pixel.yaml app.apk @string/app_name 0x7f0a0001
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/avast/apkverifier"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/avast/apkres"
)

// deviceProfile is the YAML description of the device resources are
// resolved for.
type deviceProfile struct {
	Locale          string `yaml:"locale"`
	Mcc             uint16 `yaml:"mcc"`
	Mnc             uint16 `yaml:"mnc"`
	Density         uint16 `yaml:"density"`
	SDK             uint16 `yaml:"sdk"`
	Orientation     string `yaml:"orientation"`
	Night           *bool  `yaml:"night"`
	ScreenWidthDp   uint16 `yaml:"screenWidthDp"`
	ScreenHeightDp  uint16 `yaml:"screenHeightDp"`
	SmallestWidthDp uint16 `yaml:"smallestWidthDp"`
}

func loadProfile(path string) (*deviceProfile, error) {
	p := &deviceProfile{}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Wrapf(err, "invalid profile %s", path)
	}
	return p, nil
}

func (p *deviceProfile) config() (apkres.ResTableConfig, error) {
	var c apkres.ResTableConfig
	if err := c.SetBCP47Locale(p.Locale); err != nil {
		return c, err
	}

	c.Mcc = p.Mcc
	c.Mnc = p.Mnc
	c.Density = p.Density
	c.SDKVersion = p.SDK
	c.ScreenWidthDp = p.ScreenWidthDp
	c.ScreenHeightDp = p.ScreenHeightDp
	c.SmallestScreenWidthDp = p.SmallestWidthDp

	switch p.Orientation {
	case "":
	case "port":
		c.Orientation = apkres.OrientationPort
	case "land":
		c.Orientation = apkres.OrientationLand
	case "square":
		c.Orientation = apkres.OrientationSquare
	default:
		return c, fmt.Errorf("unknown orientation %q", p.Orientation)
	}

	if p.Night != nil {
		c.UIMode &^= apkres.MaskUIModeNight
		if *p.Night {
			c.UIMode |= apkres.UIModeNightYes
		} else {
			c.UIMode |= apkres.UIModeNightNo
		}
	}
	return c, nil
}

func main() {
	profilePath := flag.String("profile", "", "YAML device profile")
	locale := flag.String("locale", "", "Override the profile locale (BCP-47)")
	density := flag.Int("density", -1, "Override the profile density (dpi)")
	system := flag.String("system", "", "Framework resources (framework-res.apk or resources.arsc)")
	verify := flag.Bool("verify", false, "Verify the APK signature and print the signer certificate")
	configs := flag.Bool("configs", false, "List the configurations present in the table")
	verbose := flag.Bool("v", false, "Log warnings about malformed input")

	flag.Parse()

	if len(flag.Args()) < 1 {
		fmt.Fprintf(os.Stderr, "%s [flags] APK [RESOURCE...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *verbose {
		apkres.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger())
	}

	apkPath := flag.Arg(0)

	if *verify {
		if err := printSigner(apkPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	profile, err := loadProfile(*profilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *locale != "" {
		profile.Locale = *locale
	}
	if *density >= 0 {
		profile.Density = uint16(*density)
	}

	config, err := profile.config()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cache, err := apkres.NewTableCache(0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	am := apkres.NewAssetManager(cache)
	defer am.Close()

	if *system != "" {
		if err := am.AddSystemTable(*system, int(config.SDKVersion)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if _, err := am.AddApk(apkPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	am.SetConfiguration(&config)

	table, err := am.ResourceTable()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *configs {
		for _, c := range table.Configurations() {
			fmt.Println(c.String())
		}
	}

	failed := false
	for _, ref := range flag.Args()[1:] {
		if err := printResource(table, ref); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", ref, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func parseRef(table *apkres.ResourceTable, ref string) (uint32, error) {
	if strings.HasPrefix(ref, "0x") {
		id, err := strconv.ParseUint(ref[2:], 16, 32)
		return uint32(id), err
	}

	// Names without a package resolve in the app package.
	defPackage := ""
	if idx := table.PackageGroupIndex(apkres.AppPackageID); idx >= 0 {
		defPackage = table.PackageName(idx)
	}
	return table.IdentifierForName(ref, "", defPackage)
}

func printResource(table *apkres.ResourceTable, ref string) error {
	resID, err := parseRef(table, ref)
	if err != nil {
		return err
	}

	name, err := table.GetResourceName(resID)
	if err != nil {
		return err
	}

	res, err := table.GetResource(resID, true, 0)
	if errors.Is(err, apkres.ErrBadValue) {
		bag, _, err := table.GetBag(resID)
		if err != nil {
			return err
		}
		fmt.Printf("0x%08x %s (bag, %d items)\n", resID, name, len(bag))
		for _, item := range bag {
			val, _ := item.Value.Format(table.StringBlock(item.StringBlock))
			attr := fmt.Sprintf("0x%08x", item.Name)
			if attrName, err := table.GetResourceName(item.Name); err == nil {
				attr = attrName.String()
			}
			fmt.Printf("    %s = %s\n", attr, val)
		}
		return nil
	} else if err != nil {
		return err
	}

	res, _, err = table.ResolveReference(res, 0)
	if err != nil {
		return err
	}

	val, err := res.Value.Format(table.StringBlock(res.StringBlock))
	if err != nil {
		return err
	}
	fmt.Printf("0x%08x %s [%s] = %s\n", resID, name, res.Config.String(), val)
	return nil
}

func printSigner(path string) error {
	res, err := apkverifier.Verify(path, nil)
	if err != nil {
		return errors.Wrap(err, "APK verification failed")
	}

	_, cert := apkverifier.PickBestApkCert(res.SignerCerts)
	if cert == nil {
		return errors.New("no valid signer certificate found")
	}

	fingerprint := sha256.Sum256(cert.Raw)
	fmt.Printf("signer: %s\nsha256: %s\n", cert.Subject, hex.EncodeToString(fingerprint[:]))
	return nil
}
