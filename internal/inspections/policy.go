package inspections

import "net/http"

// UploadPolicy is the recognized format/size policy for submitted images.
type UploadPolicy struct {
	MaxCount         int
	MaxBytesPerImage int64
	AllowedMimeTypes []string
}

// DefaultUploadPolicy mirrors the shipped configuration defaults.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxCount:         6,
		MaxBytesPerImage: 10 << 20,
		AllowedMimeTypes: []string{"image/jpeg", "image/png", "image/webp"},
	}
}

// Validate checks the image set against the policy. It runs before any
// storage or network interaction; a violation means no partial submission.
func (p UploadPolicy) Validate(images []ImageUpload) error {
	if len(images) == 0 {
		return validationErrorf("at least one image is required")
	}
	if p.MaxCount > 0 && len(images) > p.MaxCount {
		return validationErrorf("too many images: %d exceeds limit %d", len(images), p.MaxCount)
	}
	for i, img := range images {
		if len(img.Data) == 0 {
			return validationErrorf("image %d is empty", i+1)
		}
		if p.MaxBytesPerImage > 0 && int64(len(img.Data)) > p.MaxBytesPerImage {
			return validationErrorf("image %d exceeds %d bytes", i+1, p.MaxBytesPerImage)
		}
		if !p.mimeAllowed(sniffMime(img.Data)) {
			return validationErrorf("image %d has unsupported format", i+1)
		}
	}
	return nil
}

func (p UploadPolicy) mimeAllowed(mime string) bool {
	if len(p.AllowedMimeTypes) == 0 {
		return true
	}
	for _, allowed := range p.AllowedMimeTypes {
		if mime == allowed {
			return true
		}
	}
	return false
}

func sniffMime(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}
