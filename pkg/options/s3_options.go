package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*S3Options)(nil)

// S3Options describes an S3-compatible bucket mirroring the firmware
// download area.
type S3Options struct {
	Endpoint           string `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID        string `json:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey    string `json:"secret-access-key" mapstructure:"secret-access-key"`
	UseSSL             bool   `json:"use-ssl" mapstructure:"use-ssl"`
	InsecureSkipVerify bool   `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`
	BucketName         string `json:"bucket-name" mapstructure:"bucket-name"`
	Prefix             string `json:"prefix" mapstructure:"prefix"`
	Region             string `json:"region" mapstructure:"region"`
}

func NewS3Options() *S3Options {
	return &S3Options{
		UseSSL:     true,
		BucketName: "firmware",
		Prefix:     "dash/system_firmware",
		Region:     "us-east-1",
	}
}

// Validate is only meaningful when the s3 catalog source is selected; the
// caller decides whether to run it.
func (o *S3Options) Validate() []error {
	var errs []error
	if o.Endpoint == "" {
		errs = append(errs, errors.New("--s3.endpoint is required for the s3 catalog source"))
	}
	if o.BucketName == "" {
		errs = append(errs, errors.New("--s3.bucket-name must not be empty"))
	}
	return errs
}

func (o *S3Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Endpoint, "s3.endpoint", o.Endpoint, "S3 service endpoint (e.g. s3.amazonaws.com or minio.local:9000).")
	fs.StringVar(&o.AccessKeyID, "s3.access-key-id", o.AccessKeyID, "S3 access key ID.")
	fs.StringVar(&o.SecretAccessKey, "s3.secret-access-key", o.SecretAccessKey, "S3 secret access key.")
	fs.BoolVar(&o.UseSSL, "s3.use-ssl", o.UseSSL, "Enable SSL for the S3 connection.")
	fs.BoolVar(&o.InsecureSkipVerify, "s3.insecure-skip-verify", o.InsecureSkipVerify, "Skip TLS certificate verification.")
	fs.StringVar(&o.BucketName, "s3.bucket-name", o.BucketName, "Bucket holding the firmware builds.")
	fs.StringVar(&o.Prefix, "s3.prefix", o.Prefix, "Key prefix under which version.json is stored.")
	fs.StringVar(&o.Region, "s3.region", o.Region, "S3 region.")
}
