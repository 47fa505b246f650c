package signals

import "RiskWatch/internal/domain/models"

// FromVolumeMetrics derives on-chain percentages from market volume figures.
// Netflow is the asset's share of total market volume; the active-address change is the
// 24h volume against baseline, in percent. A non-positive baseline leaves it at 0.
func FromVolumeMetrics(v *models.VolumeMetrics, baseline float64) *models.OnChainSignals {
	if v == nil {
		return nil
	}
	out := &models.OnChainSignals{NetflowPercent: v.VolumeShare}
	if v.VolumeShare == 0 && v.TotalMarketVolume > 0 {
		out.NetflowPercent = v.Volume24h / v.TotalMarketVolume * 100
	}
	if baseline > 0 {
		out.ActiveAddressChange = (v.Volume24h/baseline - 1) * 100
	}
	return out
}

// normalize fills identity fields from the asset and maps volume metrics when on-chain data is absent.
func normalize(snap *models.Snapshot, symbol, name string, baseline float64) {
	if snap.Symbol == "" {
		snap.Symbol = symbol
	}
	if snap.Name == "" {
		snap.Name = name
	}
	if snap.OnChain == nil && snap.Volume != nil {
		snap.OnChain = FromVolumeMetrics(snap.Volume, baseline)
	}
}
