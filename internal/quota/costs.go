package quota

// Unit costs charged by the platform per call. These must match platform billing or
// reservations drift from what the platform actually enforces.
const (
	CostList           = 1
	CostVideoInsert    = 1600
	CostThumbnailSet   = 50
	CostMetadataUpdate = 50
)

// UploadCost returns the units one archived video consumes on its uploader.
func UploadCost(withThumbnail bool) int {
	if withThumbnail {
		return CostVideoInsert + CostThumbnailSet
	}
	return CostVideoInsert
}
