// Package apkres decodes Android binary resources: resources.arsc tables,
// compiled XML and idmap overlays, and resolves resource references against
// a device configuration.
package apkres

import (
	"bytes"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/pkg/errors"
)

type apkParser struct {
	apkPath string
	zip     *ZipReader

	encoder   ManifestEncoder
	config    *ResTableConfig
	resources *ResourceTable
}

// Parse APK's Manifest, including resolving refences to resource values.
// encoder expects an XML encoder instance, like Encoder from encoding/xml package.
//
// zipErr != nil means the APK couldn't be opened. The manifest will be parsed
// even when resourcesErr != nil, just without reference resolving.
func ParseApk(path string, encoder ManifestEncoder) (zipErr, resourcesErr, manifestErr error) {
	zip, zipErr := OpenZip(path)
	if zipErr != nil {
		return
	}
	defer zip.Close()

	resourcesErr, manifestErr = ParseApkWithZip(zip, encoder)
	return
}

// Parse APK's Manifest, including resolving refences to resource values.
// encoder expects an XML encoder instance, like Encoder from encoding/xml package.
//
// Use this if you already opened the zip with OpenZip before. This method will not Close() the zip.
//
// The manifest will be parsed even when resourcesErr != nil, just without reference resolving.
func ParseApkWithZip(zip *ZipReader, encoder ManifestEncoder) (resourcesErr, manifestErr error) {
	return ParseApkWithConfig(zip, encoder, nil)
}

// Same as ParseApkWithZip, but references are resolved for config instead
// of the default configuration. config may be nil.
func ParseApkWithConfig(zip *ZipReader, encoder ManifestEncoder, config *ResTableConfig) (resourcesErr, manifestErr error) {
	p := apkParser{
		zip:     zip,
		encoder: encoder,
		config:  config,
	}

	resourcesErr = p.parseResources()
	manifestErr = p.parseManifestXml()
	return
}

func (p *apkParser) parseResources() (err error) {
	if p.resources != nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			p.resources = nil
			err = fmt.Errorf("Panic: %v\n%s", r, string(debug.Stack()))
		}
	}()

	data, err := p.zip.Open(resourcesArsc)
	if errors.Is(err, ErrNameNotFound) {
		return os.ErrNotExist
	} else if err != nil {
		return errors.WithMessage(err, "Failed to open resources.arsc")
	}

	resources, err := ParseResourceTable(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if p.config != nil {
		resources.SetParameters(p.config)
	}
	p.resources = resources
	return nil
}

func (p *apkParser) parseManifestXml() error {
	manifest := p.zip.File["AndroidManifest.xml"]
	if manifest == nil {
		return fmt.Errorf("Failed to find AndroidManifest.xml!")
	}

	if err := manifest.Open(); err != nil {
		return err
	}
	defer manifest.Close()

	var lastErr error
	for manifest.Next() {
		if err := ParseXml(manifest, p.encoder, p.resources); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr == ErrPlainTextManifest {
		return lastErr
	}

	return fmt.Errorf("Failed to parse manifest, last error: %v", lastErr)
}
