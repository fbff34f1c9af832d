package services

import (
	"github.com/lsst-dm/dmcs/services/dmcs/domain"
	"github.com/lsst-dm/dmcs/services/dmcs/domain/models"
)

// ResolveCfgKey returns the CFG_KEY a START command should apply:
// requested, if the device allows it; otherwise the device's index-0
// default when requested is empty; otherwise ErrUnknownCfgKey.
func ResolveCfgKey(d *models.Device, requested string) (string, error) {
	if requested == "" {
		key := d.DefaultCfgKey()
		if key == "" {
			return "", domain.ErrUnknownCfgKey
		}
		return key, nil
	}
	if !d.HasCfgKey(requested) {
		return "", domain.ErrUnknownCfgKey
	}
	return requested, nil
}
