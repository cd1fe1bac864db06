// Package lightgbm は LightGBM 方式の勾配ブースティング回帰を Go だけで実装します。
//
// 木は葉単位（best-first）で成長し、分割は勾配とヘシアンの累積和から
// 二次近似のゲインで選びます。LGBMRegressor は model.Estimator を満たすため、
// カタログやグリッドサーチから他の推定器と同じように扱えます。
//
//	reg := lightgbm.NewLGBMRegressor().
//		WithNumIterations(200).
//		WithLearningRate(0.05)
//	if err := reg.Fit(X, y); err != nil {
//		return err
//	}
//	pred, _ := reg.Predict(Xtest)
package lightgbm
